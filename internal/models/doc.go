// Package models defines the value types passed between the gateway's components.
//
// Nothing here is persisted; every value lives for a single request:
//   - [Track] : normalized search candidate produced by the search service
//   - [ExtractionRequest] : a stream or download request for one media id
//   - [Outcome] : the state of an extraction subprocess (running, completed with an exit code, or failed)
//   - [MediaInfo] and [AudioFormat] : extractor metadata used to pick an audio-only rendition
package models
