package s3

import "time"

// PublishedObject describes an object written by Put.
type PublishedObject struct {
	Bucket    string
	Key       string
	Region    string
	ETag      string
	Size      int64
	WrittenAt time.Time
}

// URI returns the s3:// location of the object.
func (o PublishedObject) URI() string {
	return "s3://" + o.Bucket + "/" + o.Key
}
