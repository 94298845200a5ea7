// Package api holds depot's external wire contracts: the hook events tusd
// delivers for uploads, and the notification payload sent to the
// post-completion hook.
package api

// HookName identifies which tusd lifecycle event a hook call reports. It
// arrives in the Hook-Name header of the hook POST.
type HookName string

// Hook names as defined by the tusd hook protocol.
const (
	HookPreCreate     HookName = "pre-create"
	HookPostCreate    HookName = "post-create"
	HookPreFinish     HookName = "pre-finish"
	HookPostFinish    HookName = "post-finish"
	HookPostTerminate HookName = "post-terminate"
	HookPostReceive   HookName = "post-receive"
)

// Upload metadata keys the client must attach to link an upload to a
// dataset.
const (
	MetaDataset  = "dataset"
	MetaFilename = "filename"
)

// StorageFilestore is the only tusd storage backend depot accepts.
const StorageFilestore = "filestore"

// HookEvent is the JSON body tusd POSTs to the configured hook endpoint.
type HookEvent struct {
	Upload      Upload      `json:"Upload"`
	HTTPRequest HTTPRequest `json:"HTTPRequest"`
}

// Upload describes the state of one tus upload.
type Upload struct {
	ID             string            `json:"ID"`
	Size           int64             `json:"Size"`
	Offset         int64             `json:"Offset"`
	IsFinal        bool              `json:"IsFinal"`
	IsPartial      bool              `json:"IsPartial"`
	SizeIsDeferred bool              `json:"SizeIsDeferred"`
	PartialUploads []string          `json:"PartialUploads"`
	MetaData       map[string]string `json:"MetaData"`
	Storage        *Storage          `json:"Storage"`
}

// Storage names where tusd put the upload's bytes.
type Storage struct {
	Type string `json:"Type"`
	Path string `json:"Path"`
}

// HTTPRequest mirrors the client request tusd received.
type HTTPRequest struct {
	Method     string              `json:"Method"`
	URI        string              `json:"URI"`
	RemoteAddr string              `json:"RemoteAddr"`
	Header     map[string][]string `json:"Header"`
}

// NotificationEvent is the event name sent to the completion hook.
const NotificationEvent = "new_dataset"

// Notification is the JSON body POSTed to an HTTP completion hook after a
// dataset has been promoted to the completed store.
type Notification struct {
	Event    string `json:"event"`
	Location string `json:"location"`
}
