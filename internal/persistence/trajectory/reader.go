package trajectory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Read decodes every step of a trajectory file in order and hands it to fn.
// Reading stops at the first error fn returns.
func Read(path string, fn func(Step) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		var s Step
		if err := json.Unmarshal(sc.Bytes(), &s); err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if err := fn(s); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ReadAll loads a whole trajectory file.
func ReadAll(path string) ([]Step, error) {
	var out []Step
	err := Read(path, func(s Step) error {
		out = append(out, s)
		return nil
	})
	return out, err
}
