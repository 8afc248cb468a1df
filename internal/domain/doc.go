// Package domain models FDA drug enforcement (recall) report data.
//
// # Data Source
//
// Recall records come from the openFDA drug enforcement endpoint at
// https://api.fda.gov/drug/enforcement.json. Records are queried by report
// date range and returned as JSON objects with entirely string-typed fields,
// many of which are optional in practice.
//
// # openFDA Data Conventions
//
// Report dates:
//
//	Compact format YYYYMMDD, e.g. "20240115". Some mirrors of the data use
//	the dashed form "2024-01-15"; both are accepted. Records without a
//	parseable report date are dropped during normalization (and counted)
//	because an undated recall cannot be time-bucketed.
//
// Classification:
//
//	"Class I", "Class II", or "Class III": the FDA-assigned severity tier,
//	Class I being the most severe (reasonable probability of serious adverse
//	health consequences or death). Missing or unrecognized values are treated
//	as Class II so the derived base severity is medium, not an empty tier.
//
// Product quantity:
//
//	Free text, e.g. "4,800 bottles" or "approximately 120 cases". The leading
//	numeric token is taken as the count. When no number is present the
//	quantity is imputed from the median of same-tier quantities in the batch,
//	falling back to [FallbackQuantity] when the tier has none. Quantities are
//	never negative after normalization.
//
// # Severity Classification
//
// The derived severity label (high, medium, low) is this system's analytics
// category, distinct from the raw FDA tier:
//
//	Class I -> high | Class II -> medium | Class III -> low
//
// Reason text is scanned case-insensitively for high-risk keywords such as
// "death", "serious injury", and "contamination". Any match escalates a medium or low
// base by exactly one tier. The boost is idempotent: multiple keyword hits
// still raise severity one tier total, and it only ever raises severity,
// never lowers it. See [Classifier.Classify].
package domain
