package store

import "os"

// writeFileAtomic writes data to path by first writing to a sibling ".tmp"
// file then renaming over the target, so a crash mid-write never leaves a
// half-written document. Mirrors the teacher's internal/state atomic write.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
