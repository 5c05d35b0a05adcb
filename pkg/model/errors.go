package model

import "fmt"

func errorf(format string, args ...any) error {
	return fmt.Errorf("model: "+format, args...)
}
