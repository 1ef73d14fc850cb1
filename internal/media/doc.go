// Package media drives the external extraction executable (yt-dlp or a compatible binary).
//
// Every request gets its own subprocess. [Extractor.Stream] pipes the process output straight into an
// HTTP response with flushing after each chunk, so a slow client slows the extractor down instead of
// buffering in memory. [Extractor.Download] probes the available formats, extracts the best audio-only
// rendition into a private temp directory and hands back a [Materialized] file that is deleted on Close.
//
// A [Gate] optionally bounds how many subprocesses run at once. Cancelling a request's context terminates
// its subprocess with SIGTERM, escalating to SIGKILL after the configured grace period.
package media
