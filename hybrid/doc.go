// Package hybrid combines ranked result lists from different
// retrieval paths. Merge fuses a similarity-ranked list with a
// keyword-ranked list using Reciprocal Rank Fusion; Rerank blends
// similarity with an external quality signal such as popularity.
package hybrid
