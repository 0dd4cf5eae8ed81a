// Package disc models the titles found on an optical-disc image and the
// image-level operations the pipeline performs on it.
//
// Parser turns the scanner's diagnostic output into Title records one line at
// a time, Mounter loop-mounts images through udisksctl, and Label derives a
// human-readable name from an image file name for logs and reports.
package disc
