//go:build !darwin && !linux

package hostinfo

func activeApp() (string, error) {
	return "", ErrUnsupported
}

func processCount() (int, error) {
	return 0, ErrUnsupported
}
