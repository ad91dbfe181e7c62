// Package s3 fetches file contents from S3-compatible object storage.
//
// File steps whose source is an s3://bucket/key URI are streamed from here
// to the target host. Any S3-compatible endpoint works (AWS, Hetzner Object
// Storage, MinIO); credentials come from the plan or the default AWS chain.
package s3
