//go:build !unix

package store

// lockDir is in-process only on platforms without flock.
func lockDir(string) (func(), error) {
	return func() {}, nil
}
