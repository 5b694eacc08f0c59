// Package domain models CBS (Statistics Netherlands) OData open-data tables
// and the join and aggregation applied to them.
//
// # Data Source
//
// Each dataset is published under a root URL such as
// https://opendata.cbs.nl/ODataApi/OData/83496NED. The root serves a
// resource index: a list of {name, url} pairs naming the typed fact table
// ("TypedDataSet") and the dimension tables it references.
//
// # CBS Data Conventions
//
// Dimension tables:
//
//	{"Key": "3000", "Title": "Mannen", "Description": null}
//	Fact rows carry the Key; the chart shows the Title.
//
// Periods:
//
//	Period keys look like "2015JJ00" (JJ = yearly). The Title is the bare
//	year, "2015", and is what rows are grouped by. See [GroupByYear].
//
// Missing figures:
//
//	A figure CBS cannot publish is written as the string "NaN" instead of a
//	number. It decodes to an absent [Metric], never to a float NaN, so an
//	average cannot be silently poisoned. See [Metric.UnmarshalJSON].
//
// # Referential Integrity
//
// Every code in a fact row must resolve in its dimension table. A miss is a
// [MissingReferenceError] and aborts the dataset: dropping the row would
// skew the yearly averages without any visible sign.
//
// # Aggregation
//
// Rows from all datasets are pooled, bucketed by year and averaged per
// category. An empty category-year yields an absent point, rendered as a
// gap in the line. See [Aggregate].
package domain
