// Package publish turns captured images into public links and pushes the
// output directory to its hosting repository.
package publish

import "context"

// Publisher makes one captured image publicly reachable and returns its URL.
type Publisher interface {
	Publish(ctx context.Context, localPath, fileName string) (string, error)
}

// RawURL builds the raw-content link for a file committed to a GitHub
// repository. Inputs are not validated.
func RawURL(repo, branch, dir, fileName string) string {
	return "https://raw.githubusercontent.com/" + repo + "/" + branch + "/" + dir + "/" + fileName
}

// GCSURL builds the public HTTPS link for an object in a GCS bucket.
func GCSURL(bucket, object string) string {
	return "https://storage.googleapis.com/" + bucket + "/" + object
}

// GitPublisher links images that become public when the output directory is
// pushed. Publish does no I/O.
type GitPublisher struct {
	Repository string
	Branch     string
	Dir        string
}

// NewGitPublisher returns a GitPublisher for repo at branch.
func NewGitPublisher(repo, branch, dir string) *GitPublisher {
	return &GitPublisher{Repository: repo, Branch: branch, Dir: dir}
}

// Publish returns the raw URL the image will have once pushed.
func (p *GitPublisher) Publish(_ context.Context, _ string, fileName string) (string, error) {
	return RawURL(p.Repository, p.Branch, p.Dir, fileName), nil
}
