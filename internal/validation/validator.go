package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/contentops/slotfill/pkg/types"
)

// MaxAttachmentsPerAssignment bounds the ids a single assignment may carry
const MaxAttachmentsPerAssignment = 500

// Validator provides input validation and sanitization
type Validator struct {
	// Patterns for validation
	fieldKeyPattern  *regexp.Regexp
	fieldNamePattern *regexp.Regexp

	// Security patterns to detect injection attempts
	commandInjectionPatterns []*regexp.Regexp
	pathTraversalPatterns    []*regexp.Regexp
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		// Field keys: field_ followed by letters, digits and underscores
		fieldKeyPattern: regexp.MustCompile(`^field_[a-zA-Z0-9_]{1,64}$`),

		// Field and layout names: letters, digits, underscores and hyphens (1-64 chars)
		fieldNamePattern: regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`),

		// Command injection patterns
		commandInjectionPatterns: []*regexp.Regexp{
			regexp.MustCompile(`[;&|]`),     // Command separators
			regexp.MustCompile("`"),         // Backticks
			regexp.MustCompile(`\$\(`),      // Command substitution
			regexp.MustCompile(`\$\{`),      // Variable expansion
			regexp.MustCompile(`<<|>>`),     // Redirections
			regexp.MustCompile(`\|\||\&\&`), // Logical operators
			regexp.MustCompile(`\n|\r`),     // Newlines
			regexp.MustCompile(`[<>]`),      // IO redirection
			regexp.MustCompile(`\x00`),      // Null bytes
		},

		// Path traversal patterns
		pathTraversalPatterns: []*regexp.Regexp{
			regexp.MustCompile(`\.\.[\\/]`),         // ../ or ..\
			regexp.MustCompile(`%2e%2e|%252e%252e`), // URL encoded traversal
			regexp.MustCompile(`\x00`),              // Null bytes
		},
	}
}

// ValidatePageID validates a page id
func (v *Validator) ValidatePageID(id int64) error {
	if id <= 0 {
		return fmt.Errorf("page id must be a positive integer")
	}
	return nil
}

// ValidateFieldKey validates a custom field key
func (v *Validator) ValidateFieldKey(key string) error {
	if key == "" {
		return fmt.Errorf("field key cannot be empty")
	}
	if v.containsCommandInjection(key) {
		return fmt.Errorf("field key contains invalid characters")
	}
	if !v.fieldKeyPattern.MatchString(key) {
		return fmt.Errorf("invalid field key %q: expected field_ followed by letters, digits or underscores", key)
	}
	return nil
}

// ValidateFieldName validates a custom field or layout name
func (v *Validator) ValidateFieldName(name string) error {
	if name == "" {
		return fmt.Errorf("field name cannot be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("field name too long: maximum 64 characters")
	}
	if !v.fieldNamePattern.MatchString(name) {
		return fmt.Errorf("invalid field name %q: must contain only alphanumeric characters, underscores, and hyphens", name)
	}
	return nil
}

// ValidateAttachmentIDs validates the ids of one assignment
func (v *Validator) ValidateAttachmentIDs(ids []int64) error {
	if len(ids) == 0 {
		return fmt.Errorf("attachment ids cannot be empty")
	}
	if len(ids) > MaxAttachmentsPerAssignment {
		return fmt.Errorf("too many attachment ids: maximum %d", MaxAttachmentsPerAssignment)
	}
	for _, id := range ids {
		if id <= 0 {
			return fmt.Errorf("invalid attachment id %d", id)
		}
	}
	return nil
}

// ValidateImageIDs validates the image selection of a plan request
func (v *Validator) ValidateImageIDs(ids []int64) error {
	if len(ids) == 0 {
		return fmt.Errorf("no images selected")
	}
	for _, id := range ids {
		if id <= 0 {
			return fmt.Errorf("invalid image id %d", id)
		}
	}
	return nil
}

// ValidateAncestry validates the container path of an assignment
func (v *Validator) ValidateAncestry(path []types.AncestryFrame) error {
	for i, f := range path {
		if err := v.ValidateFieldKey(f.Key); err != nil {
			return fmt.Errorf("ancestry[%d]: %w", i, err)
		}
		if err := v.ValidateFieldName(f.Name); err != nil {
			return fmt.Errorf("ancestry[%d]: %w", i, err)
		}
		switch f.Kind {
		case types.FieldGroup:
			if f.RowIndex != nil {
				return fmt.Errorf("ancestry[%d]: group %s cannot have a row index", i, f.Name)
			}
		case types.FieldRepeater, types.FieldFlexibleContent:
			if f.RowIndex != nil && *f.RowIndex < 0 {
				return fmt.Errorf("ancestry[%d]: negative row index", i)
			}
		default:
			return fmt.Errorf("ancestry[%d]: %q is not a container type", i, f.Kind)
		}
		if f.LayoutName != "" {
			if f.Kind != types.FieldFlexibleContent {
				return fmt.Errorf("ancestry[%d]: layout name on a %s field", i, f.Kind)
			}
			if err := v.ValidateFieldName(f.LayoutName); err != nil {
				return fmt.Errorf("ancestry[%d] layout: %w", i, err)
			}
		}
		if f.Kind == types.FieldFlexibleContent && f.LayoutName == "" {
			return fmt.Errorf("ancestry[%d]: flexible content frame needs a layout name", i)
		}
	}
	return nil
}

// ValidateAssignment validates one inbound assignment record. Records are
// rejected rather than coerced.
func (v *Validator) ValidateAssignment(a types.Assignment) error {
	if err := v.ValidateFieldKey(a.FieldKey); err != nil {
		return err
	}
	if err := v.ValidateFieldName(a.FieldName); err != nil {
		return err
	}
	if !a.FieldType.Known() {
		return fmt.Errorf("unknown field type %q", a.FieldType)
	}
	if err := v.ValidateAttachmentIDs(a.AttachmentIDs); err != nil {
		return err
	}
	if err := v.ValidateAncestry(a.Ancestry); err != nil {
		return err
	}

	nested := len(a.Ancestry) > 0
	switch a.FieldType {
	case types.SlotImage:
		if nested {
			return fmt.Errorf("field type image cannot have an ancestry path")
		}
	case types.SlotRepeaterImage, types.SlotNestedRepeaterImage:
		if !nested {
			return fmt.Errorf("field type %s requires an ancestry path", a.FieldType)
		}
	}

	if !nested {
		if a.ParentKey != "" || a.ParentName != "" || a.LayoutName != "" {
			return fmt.Errorf("parent fields given without an ancestry path")
		}
		return nil
	}
	parent := a.Ancestry[len(a.Ancestry)-1]
	if a.ParentKey != "" && a.ParentKey != parent.Key {
		return fmt.Errorf("parent key %q does not match ancestry %q", a.ParentKey, parent.Key)
	}
	if a.ParentName != "" && a.ParentName != parent.Name {
		return fmt.Errorf("parent name %q does not match ancestry %q", a.ParentName, parent.Name)
	}
	if a.LayoutName != "" && a.LayoutName != parent.LayoutName {
		return fmt.Errorf("layout name %q does not match ancestry %q", a.LayoutName, parent.LayoutName)
	}
	return nil
}

// ValidateQueryPath validates a JSONPath expression before it is parsed
func (v *Validator) ValidateQueryPath(path string) error {
	if path == "" {
		return fmt.Errorf("query path cannot be empty")
	}
	if len(path) > 512 {
		return fmt.Errorf("query path too long: maximum 512 characters")
	}
	if strings.ContainsAny(path, "\x00\n\r`") {
		return fmt.Errorf("query path contains invalid characters")
	}
	return nil
}

// ValidateFilePath validates and sanitizes a file path
func (v *Validator) ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	// Check for path traversal attempts
	if v.containsPathTraversal(path) {
		return fmt.Errorf("file path contains invalid characters or patterns")
	}

	// Check for command injection attempts in file paths
	// But allow forward slashes which are valid in paths
	if v.containsFilePathCommandInjection(path) {
		return fmt.Errorf("file path contains invalid characters")
	}

	// Ensure it's not trying to access parent directories
	if strings.HasPrefix(filepath.Clean(path), "..") {
		return fmt.Errorf("file path cannot traverse to parent directories")
	}

	return nil
}

// ValidateTitle validates a page or attachment title
func (v *Validator) ValidateTitle(title string) error {
	if title == "" {
		return fmt.Errorf("title cannot be empty")
	}

	if len(title) > 255 {
		return fmt.Errorf("title cannot exceed 255 characters")
	}

	if v.containsCommandInjection(title) {
		return fmt.Errorf("title contains invalid characters")
	}

	// Check for XSS attempts
	if v.containsHTML(title) {
		return fmt.Errorf("title cannot contain HTML")
	}

	if v.containsDangerousUnicode(title) {
		return fmt.Errorf("title contains invalid Unicode characters")
	}

	return nil
}

// ValidateMimeType validates an attachment mime type
func (v *Validator) ValidateMimeType(mime string) error {
	parts := strings.Split(mime, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid mime type %q", mime)
	}
	if v.containsCommandInjection(mime) {
		return fmt.Errorf("mime type contains invalid characters")
	}
	return nil
}

// SanitizeString removes potentially dangerous characters from a string
func (v *Validator) SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters except tab, newline, carriage return
	var sanitized strings.Builder
	for _, r := range input {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// TruncateString safely truncates a string to a maximum length
func (v *Validator) TruncateString(s string, maxLen int) string {
	// Truncate at rune boundary to avoid breaking multi-byte characters
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// containsCommandInjection checks if input contains command injection patterns
func (v *Validator) containsCommandInjection(input string) bool {
	for _, pattern := range v.commandInjectionPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}

// containsHTML checks for HTML/XML content
func (v *Validator) containsHTML(input string) bool {
	htmlPatterns := []string{
		"<script", "</script>", "<iframe", "<object", "<embed",
		"<img", "onerror=", "onclick=", "onload=", "javascript:",
		"<!entity", "<![cdata[", "<?xml",
	}

	lowerInput := strings.ToLower(input)
	for _, pattern := range htmlPatterns {
		if strings.Contains(lowerInput, pattern) {
			return true
		}
	}

	return strings.Contains(input, "<") && strings.Contains(input, ">")
}

// containsDangerousUnicode checks for dangerous Unicode characters
func (v *Validator) containsDangerousUnicode(input string) bool {
	for _, r := range input {
		// RTL overrides are format characters too
		if unicode.Is(unicode.Cf, r) {
			return true
		}
	}
	return false
}

// containsFilePathCommandInjection checks for command injection in file paths
// This is more permissive than general command injection as paths need slashes
func (v *Validator) containsFilePathCommandInjection(path string) bool {
	dangerousPatterns := []string{
		";", "|", "&", "$", "`", "(", ")", "<", ">", "\n", "\r",
		"\x00", "%00",
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(path, pattern) {
			return true
		}
	}

	return false
}

// containsPathTraversal checks if input contains path traversal patterns
func (v *Validator) containsPathTraversal(input string) bool {
	lower := strings.ToLower(input)
	for _, pattern := range v.pathTraversalPatterns {
		if pattern.MatchString(lower) {
			return true
		}
	}
	return false
}
