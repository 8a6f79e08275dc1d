// Package videos is the repository for the video resources that processing
// jobs reference. Rows live in the same SQLite database as the job queue.
package videos
