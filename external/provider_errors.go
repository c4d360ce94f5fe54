package external

import "fmt"

// ProviderError is a provider response normalized to the fields the linker
// reports: which provider and operation failed, the HTTP status, and the
// provider's own error code and description.
type ProviderError struct {
	Provider    string
	Operation   string
	Status      int
	Code        string
	Description string
	Err         error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}

	switch {
	case e.Description != "":
		return fmt.Sprintf("%s %s failed: %s", e.Provider, e.Operation, e.Description)
	case e.Code != "":
		return fmt.Sprintf("%s %s failed: %s", e.Provider, e.Operation, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Operation, e.Err)
	}

	return fmt.Sprintf("%s %s failed", e.Provider, e.Operation)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Metadata flattens the error into the map carried on rich auth errors.
func (e *ProviderError) Metadata() map[string]any {
	if e == nil {
		return nil
	}

	meta := map[string]any{}
	if e.Provider != "" {
		meta["provider"] = e.Provider
	}
	if e.Operation != "" {
		meta["operation"] = e.Operation
	}
	if e.Status != 0 {
		meta["status"] = e.Status
	}
	if e.Code != "" {
		meta["code"] = e.Code
	}
	if e.Description != "" {
		meta["description"] = e.Description
	}

	return meta
}
