package models

// ContentType tags a Payload/Item with its semantic variant (spec §3). It is
// a plain string on the wire, matching the teacher's own content_type
// convention for the (unrelated) PrivateData variants it ships.
type ContentType string

const (
	ContentTypeNote              ContentType = "Note"
	ContentTypeTag               ContentType = "Tag"
	ContentTypeSmartTag          ContentType = "SmartTag"
	ContentTypeItemsKey          ContentType = "SN|ItemsKey"
	ContentTypeComponent         ContentType = "SN|Component"
	ContentTypeTheme             ContentType = "SN|Theme"
	ContentTypeEditor            ContentType = "SN|Editor"
	ContentTypeActionsExtension  ContentType = "Extension"
	ContentTypePrivileges        ContentType = "SN|Privileges"
	ContentTypeHistorySession    ContentType = "SN|UserPreferences"
	ContentTypeUserPrefs         ContentType = "UserPreferences"
	ContentTypeEncryptedStorage  ContentType = "SN|EncryptedStorage"
	// ContentTypeRootKey never appears on the wire or in the collection; the
	// root key lives in RAM only (spec §3).
	ContentTypeRootKey ContentType = "SN|RootKey"

	// ContentTypeAny is a wildcard used only by observer registration
	// (spec §4.5 step 5), never as an actual item's content type.
	ContentTypeAny ContentType = "*"
)

// RequiresRootKey reports whether payloads of this content type are always
// encrypted with the account root key rather than an ItemsKey (spec §4.2
// "Key selection"): items keys themselves, and the encrypted-storage blob
// that exists only in WrapperOnly mode.
func (c ContentType) RequiresRootKey() bool {
	return c == ContentTypeItemsKey || c == ContentTypeEncryptedStorage
}

// Reference is a typed pointer from one item's content to another
// (spec §3 "Item"). Every non-errored item's content carries a references
// array of these.
type Reference struct {
	UUID        string      `json:"uuid"`
	ContentType ContentType `json:"content_type"`
}
