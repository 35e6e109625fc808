package attachment

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// Upload is one image received from a client
type Upload struct {
	Filename string
	Data     []byte
}

// Validator checks uploads against the configured type and size limits
type Validator struct {
	MaxSizeBytes int64
	AllowedTypes []string
}

// Check returns the human-readable problems with u, or nil
func (v Validator) Check(field string, u Upload) []string {
	var problems []string

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(u.Filename), "."))
	if !strings.HasPrefix(http.DetectContentType(u.Data), "image/") {
		problems = append(problems, fmt.Sprintf("The %s must be an image.", field))
	}
	if !v.allowed(ext) {
		problems = append(problems, fmt.Sprintf("The %s must be a file of type: %s.", field, strings.Join(v.AllowedTypes, ", ")))
	}
	if v.MaxSizeBytes > 0 && int64(len(u.Data)) > v.MaxSizeBytes {
		problems = append(problems, fmt.Sprintf("The %s may not be greater than %d kilobytes.", field, v.MaxSizeBytes/1024))
	}
	return problems
}

func (v Validator) allowed(ext string) bool {
	for _, t := range v.AllowedTypes {
		if t == ext {
			return true
		}
	}
	return false
}
