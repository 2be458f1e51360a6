package domain

// UploadedFile describes a stored payment proof.
type UploadedFile struct {
	Key         string
	ContentType string
	Size        int64
	URL         string
}
