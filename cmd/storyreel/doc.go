// Command storyreel is the operator CLI: it writes and inspects
// configuration, checks timelines and their narration markup, manages saved
// drafts, plays a timeline headlessly and queues exports for the encoder.
package main
