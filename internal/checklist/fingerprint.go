package checklist

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"fieldcheck/internal/model"

	"github.com/gowebpki/jcs"
)

// Fingerprint hashes the RFC 8785 canonical form of a template's content.
// Lifecycle fields (version, status, timestamps) are excluded, so two
// templates share a fingerprint exactly when their checklists are identical.
func Fingerprint(t *model.Template) (string, error) {
	content := t.Clone()
	content.Version = ""
	content.Status = ""
	content.Fingerprint = ""
	content.CreatedAt = time.Time{}
	content.UpdatedAt = time.Time{}
	content.PublishedAt = nil

	// nil and empty collections hash alike, whichever store decoded them
	if content.Groups == nil {
		content.Groups = []model.Group{}
	}
	if content.Questions == nil {
		content.Questions = []model.Question{}
	}
	for i := range content.Groups {
		if content.Groups[i].QuestionIDs == nil {
			content.Groups[i].QuestionIDs = []string{}
		}
	}

	raw, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("marshal template: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize template: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
