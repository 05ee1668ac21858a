package lm

import (
	"fmt"
	"io"
	"os"

	"github.com/emergingrobotics/go-nvme-lm/pkg/driver"
)

// ReadStatePayload reads exactly numd dwords of controller state from path
func ReadStatePayload(path string, numd uint32) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, driver.NewErrorWithCause(driver.StatusIOFailure, "open controller state", err)
	}
	defer f.Close()

	data := make([]byte, int(numd)*driver.DwordSize)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, driver.NewErrorWithCause(driver.StatusIOFailure,
			fmt.Sprintf("read controller state: expected %d bytes", len(data)), err)
	}
	return data, nil
}

// WriteStateOutput writes received controller state to path, creating or
// truncating it
func WriteStateOutput(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return driver.NewErrorWithCause(driver.StatusIOFailure, "open output file", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return driver.NewErrorWithCause(driver.StatusIOFailure, "write output file", err)
	}
	if err := f.Close(); err != nil {
		return driver.NewErrorWithCause(driver.StatusIOFailure, "close output file", err)
	}
	return nil
}
