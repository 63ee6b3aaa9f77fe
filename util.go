package pool

import "os"

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

func closeAndDeleteUnlessOK(f *os.File, ok *bool) {
	if *ok {
		return
	}
	f.Close()
	os.Remove(f.Name())
}

// within reports whether a record level levels below the starting directory
// is inside a depth limit; negative depth is unlimited.
func within(depth, level int) bool {
	return depth < 0 || level <= depth
}
