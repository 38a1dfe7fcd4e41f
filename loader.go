package loader

// Reserved names and persisted catalog constants
const (
	// ApplicationsName is the pseudo-name that opens the application browser
	ApplicationsName = "Applications"

	// MenuHeaderPrefix prefixes the version number on line 1 of the menu file
	MenuHeaderPrefix = "MenuAppList Version "

	// MenuVersion is the current menu file schema version
	MenuVersion = 1

	// DefaultAppsRoot is the storage directory holding dynamically loaded images
	DefaultAppsRoot = "/ext/apps/"

	// FileMode is the mode for the regenerated menu file
	FileMode = 0o644
)

// Status is the outcome class of a start request
type Status int

const (
	// StatusOK means the application was started
	StatusOK Status = iota
	// StatusAppStarted means the slot was already occupied
	StatusAppStarted
	// StatusUnknownApp means no catalog resolved the name
	StatusUnknownApp
	// StatusInternal means loading failed; Result.Kind holds the reason
	StatusInternal
	// StatusDeclined means the user declined an API mismatch prompt.
	// The failure has already been surfaced and must not be presented again.
	StatusDeclined
)

// Status string constants
const (
	statusOKStr         = "ok"
	statusAppStartedStr = "app_started"
	statusUnknownAppStr = "unknown_app"
	statusInternalStr   = "internal"
	statusDeclinedStr   = "declined"
)

// String returns the string representation of a Status
func (s Status) String() string {
	switch s {
	case StatusOK:
		return statusOKStr
	case StatusAppStarted:
		return statusAppStartedStr
	case StatusUnknownApp:
		return statusUnknownAppStr
	case StatusInternal:
		return statusInternalStr
	case StatusDeclined:
		return statusDeclinedStr
	default:
		return statusInternalStr
	}
}

// ErrorKind classifies why a start request failed
type ErrorKind int

const (
	// KindUnknown is the generic internal failure
	KindUnknown ErrorKind = iota
	// KindUnknownApp means the name did not resolve
	KindUnknownApp
	// KindAppStarted means the slot was occupied
	KindAppStarted
	// KindInvalidFile means the image could not be read or parsed
	KindInvalidFile
	// KindInvalidManifest means the image manifest is malformed
	KindInvalidManifest
	// KindMissingImports means the image references symbols the firmware lacks
	KindMissingImports
	// KindHWMismatch means the image targets different hardware
	KindHWMismatch
	// KindOutdatedApp means the image was built against an older API
	KindOutdatedApp
	// KindOutdatedFirmware means the image needs a newer API
	KindOutdatedFirmware
	// KindOutOfMemory means the image does not fit in memory
	KindOutOfMemory
	// KindPluginNotRunnable means the image is a plugin, not an application
	KindPluginNotRunnable
)

// ErrorKind string constants
const (
	kindUnknownStr           = "unknown"
	kindUnknownAppStr        = "unknown_app"
	kindAppStartedStr        = "app_started"
	kindInvalidFileStr       = "invalid_file"
	kindInvalidManifestStr   = "invalid_manifest"
	kindMissingImportsStr    = "missing_imports"
	kindHWMismatchStr        = "hw_mismatch"
	kindOutdatedAppStr       = "outdated_app"
	kindOutdatedFirmwareStr  = "outdated_firmware"
	kindOutOfMemoryStr       = "out_of_memory"
	kindPluginNotRunnableStr = "plugin_not_runnable"
)

// String returns the string representation of an ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindUnknownApp:
		return kindUnknownAppStr
	case KindAppStarted:
		return kindAppStartedStr
	case KindInvalidFile:
		return kindInvalidFileStr
	case KindInvalidManifest:
		return kindInvalidManifestStr
	case KindMissingImports:
		return kindMissingImportsStr
	case KindHWMismatch:
		return kindHWMismatchStr
	case KindOutdatedApp:
		return kindOutdatedAppStr
	case KindOutdatedFirmware:
		return kindOutdatedFirmwareStr
	case KindOutOfMemory:
		return kindOutOfMemoryStr
	case KindPluginNotRunnable:
		return kindPluginNotRunnableStr
	case KindUnknown:
		fallthrough
	default:
		return kindUnknownStr
	}
}

// Result is the {status, error kind, message} triple returned by Start
type Result struct {
	Status  Status
	Kind    ErrorKind
	Message string
}

// OK reports whether the application was started
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Err converts a failed Result into a *StartError, or nil on success
func (r Result) Err() error {
	if r.Status == StatusOK {
		return nil
	}
	return &StartError{Status: r.Status, Kind: r.Kind, Message: r.Message}
}

// BootMode is the mode the device booted in
type BootMode int

const (
	// BootModeNormal is a regular boot; autorun and the menu catalog apply
	BootModeNormal BootMode = iota
	// BootModeDFU is a firmware-update boot
	BootModeDFU
	// BootModeUpdate is an update-package boot
	BootModeUpdate
)

// BootMode string constants
const (
	bootModeNormalStr = "normal"
	bootModeDFUStr    = "dfu"
	bootModeUpdateStr = "update"
)

// String returns the string representation of a BootMode
func (m BootMode) String() string {
	switch m {
	case BootModeDFU:
		return bootModeDFUStr
	case BootModeUpdate:
		return bootModeUpdateStr
	default:
		return bootModeNormalStr
	}
}

// ParseBootMode converts a configuration string into a BootMode
func ParseBootMode(s string) (BootMode, bool) {
	switch s {
	case bootModeNormalStr, "":
		return BootModeNormal, true
	case bootModeDFUStr:
		return BootModeDFU, true
	case bootModeUpdateStr:
		return BootModeUpdate, true
	default:
		return BootModeNormal, false
	}
}
