package utils

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/twmb/murmur3"
)

func HashString(s string) uint64 {
	hash := murmur3.New64()
	_, err := hash.Write([]byte(s))
	if err != nil {
		panic(err)
	}
	return hash.Sum64()
}

// HashStrings hashes a sequence of strings, each one followed by a zero byte
// so that ["ab", "c"] and ["a", "bc"] differ.
func HashStrings(ss ...string) uint64 {
	hash := murmur3.New64()
	for _, s := range ss {
		_, err := hash.Write([]byte(s))
		if err != nil {
			panic(err)
		}
		_, _ = hash.Write([]byte{0})
	}
	return hash.Sum64()
}

// ReadLines reads all lines of r, without line terminators.
func ReadLines(r io.Reader) ([]string, error) {
	reader := bufio.NewReader(r)
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			lines = append(lines, strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func ReadList(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadLines(file)
}
