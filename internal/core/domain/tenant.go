package domain

import (
	"errors"
	"strings"
)

// TenantKey scopes every document and every query filter. CompanyID and
// ProjectID are always required; FileName is set only for document-level
// operations (ingest, delete, existence check).
type TenantKey struct {
	CompanyID        string `json:"company_id"`
	ProjectID        string `json:"project_id"`
	DocumentCategory string `json:"document_category,omitempty"`
	DocumentType     string `json:"document_type,omitempty"`
	FileName         string `json:"file_name,omitempty"`
}

func (k TenantKey) Validate() error {
	if strings.TrimSpace(k.CompanyID) == "" {
		return WrapError(ErrInvalidInput, "validate tenant key", errors.New("company_id is required"))
	}
	if strings.TrimSpace(k.ProjectID) == "" {
		return WrapError(ErrInvalidInput, "validate tenant key", errors.New("project_id is required"))
	}
	return nil
}

// ValidateDocument additionally requires the document-level components, so a
// delete or ingest can never address more than a single file.
func (k TenantKey) ValidateDocument() error {
	if err := k.Validate(); err != nil {
		return err
	}
	for _, part := range []struct{ name, value string }{
		{"document_category", k.DocumentCategory},
		{"document_type", k.DocumentType},
		{"file_name", k.FileName},
	} {
		if strings.TrimSpace(part.value) == "" {
			return WrapError(ErrInvalidInput, "validate tenant key", errors.New(part.name+" is required"))
		}
	}
	return nil
}

// FileID is the document identity: at most one live passage set may exist per
// FileID at any time.
func (k TenantKey) FileID() string {
	return strings.Join([]string{k.CompanyID, k.ProjectID, k.DocumentCategory, k.DocumentType, k.FileName}, "/")
}

// ScopeID identifies the tenant scope without the file component, used as the
// key for cached retriever handles.
func (k TenantKey) ScopeID() string {
	return strings.Join([]string{k.CompanyID, k.ProjectID, k.DocumentCategory, k.DocumentType}, "/")
}

// Filter returns the exact-match metadata filter for this key: every non-empty
// component constrains the search, empty ones do not.
func (k TenantKey) Filter() map[string]string {
	filter := map[string]string{
		"company_id": k.CompanyID,
		"project_id": k.ProjectID,
	}
	if k.DocumentCategory != "" {
		filter["document_category"] = k.DocumentCategory
	}
	if k.DocumentType != "" {
		filter["document_type"] = k.DocumentType
	}
	if k.FileName != "" {
		filter["file_name"] = k.FileName
	}
	return filter
}
