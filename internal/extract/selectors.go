package extract

// Selector fallback chains, tried in order until one yields a usable value.
// The leading entries target Google Scholar markup; the rest cover the
// citation meta-tag conventions common on publisher pages.
var (
	titleSelectors = []string{
		".gs_rt h3 a",
		".gs_rt a",
		"#gsc_oci_title",
		"h1",
		".citation_title",
		"title",
	}

	authorSelectors = []string{
		".gs_a",
		".gsc_oci_value",
		".citation_author",
		".authors",
		".author",
	}

	dateSelectors = []string{
		".gs_a",
		".citation_date",
		".year",
		".date",
	}

	artifactSelectors = []string{
		"a[href$='.pdf']",
		".gs_or_ggsm a",
		".citation_pdf_url",
		"a[href*='doi.org']",
		"a[href*='arxiv.org']",
	}

	citationSelectors = []string{
		".gs_fl a[href*='cites']",
		".gsc_oci_value a[href*='cites']",
		".citation_count",
		"a[href*='cited']",
	}

	venueSelectors = []string{
		".gs_a",
		".citation_venue",
		".journal",
		".conference",
	}

	summarySelectors = []string{
		".gs_rs",
		"#gsc_oci_descr",
		".citation_abstract",
		".abstract",
		".description",
	}
)

// SubjectSelectors locate the author display name on a profile page.
var SubjectSelectors = []string{
	"#gsc_prf_in",
	".gsc_prf_in",
	"h1",
	".gs_ai_name",
}

// ItemRowSelectors locate the publication rows on a profile page.
var ItemRowSelectors = []string{
	".gsc_a_tr a.gsc_a_at",
	".gsc_a_t a",
	".gs_r.gs_or.gs_scl a",
}

// SortByYearSelectors locate the year-sort control.
var SortByYearSelectors = []string{
	"#gsc_a_ha",
	".gsc_a_ha",
	"button[aria-label*='Sort']",
}

// ShowMoreSelectors locate the pagination button that reveals further rows.
var ShowMoreSelectors = []string{
	"#gsc_bpf_more",
	".gsc_bpf_more",
	"button[onclick*='more']",
}
