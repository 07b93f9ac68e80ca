// Package report archives sync run reports in an S3 compatible bucket.
//
// Each report is stored as indented JSON under
// <prefix>/<kind>/<yyyy>/<mm>/<dd>/<started>-<run id>.json so a bucket listing sorts
// chronologically per kind. The bucket is created on first upload. With a retention period
// configured, expired reports are pruned after every upload.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	archive := report.NewArchive(client, cfg.Storage, logger)
//	r := runner.New(cfg.Sync, providers, logger, archive)
package report
