// Package notes defines the domain model shared across the pipeline: note
// styles, downloaded audio metadata, timestamped transcripts, and the final
// note result. These types are the payloads the artifact store persists
// between stages.
package notes
