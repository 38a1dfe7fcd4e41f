package loader

import "fmt"

// Classification is the outcome of preloading or mapping an image
type Classification int

const (
	// ClassSuccess means the step succeeded
	ClassSuccess Classification = iota
	// ClassAPITooOld means the image was built against an older API
	ClassAPITooOld
	// ClassAPITooNew means the image needs a newer API
	ClassAPITooNew
	// ClassTargetMismatch means the image targets different hardware
	ClassTargetMismatch
	// ClassInvalidManifest means the manifest is malformed
	ClassInvalidManifest
	// ClassInvalidFile means the file could not be read or parsed
	ClassInvalidFile
	// ClassMissingImports means symbol binding failed
	ClassMissingImports
	// ClassNotEnoughMemory means the image does not fit in memory
	ClassNotEnoughMemory
	// ClassPluginNotRunnable means the image is a plugin
	ClassPluginNotRunnable
	// ClassUnknown is any other failure
	ClassUnknown
)

// String returns a human-readable description used in status messages
func (c Classification) String() string {
	switch c {
	case ClassSuccess:
		return "Success"
	case ClassAPITooOld:
		return "Update Application to use with this Firmware (ApiTooOld)"
	case ClassAPITooNew:
		return "Update Firmware to use with this Application (ApiTooNew)"
	case ClassTargetMismatch:
		return "Hardware target mismatch"
	case ClassInvalidManifest:
		return "Invalid manifest"
	case ClassInvalidFile:
		return "Invalid file"
	case ClassMissingImports:
		return "Missing imports"
	case ClassNotEnoughMemory:
		return "Not enough memory"
	case ClassPluginNotRunnable:
		return "Plugin is not runnable"
	default:
		return "Unknown error"
	}
}

// Recoverable reports whether the user may choose to run the image anyway
func (c Classification) Recoverable() bool {
	return c == ClassAPITooOld || c == ClassAPITooNew
}

// Kind maps the classification onto the error taxonomy
func (c Classification) Kind() ErrorKind {
	switch c {
	case ClassInvalidFile:
		return KindInvalidFile
	case ClassNotEnoughMemory:
		return KindOutOfMemory
	case ClassInvalidManifest:
		return KindInvalidManifest
	case ClassAPITooOld:
		return KindOutdatedApp
	case ClassAPITooNew:
		return KindOutdatedFirmware
	case ClassTargetMismatch:
		return KindHWMismatch
	case ClassMissingImports:
		return KindMissingImports
	case ClassPluginNotRunnable:
		return KindPluginNotRunnable
	default:
		return KindUnknown
	}
}

// APIVersion is a firmware API version
type APIVersion struct {
	Major uint16
	Minor uint16
}

// String returns "major.minor"
func (v APIVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// CheckAPIVersion compares the API an image was built against with the
// firmware's. A different major version is a mismatch in that direction; a
// newer minor within the same major needs symbols the firmware lacks.
// Older minors are compatible.
func CheckAPIVersion(image, firmware APIVersion) Classification {
	switch {
	case image.Major < firmware.Major:
		return ClassAPITooOld
	case image.Major > firmware.Major:
		return ClassAPITooNew
	case image.Minor > firmware.Minor:
		return ClassAPITooNew
	default:
		return ClassSuccess
	}
}

// Manifest is the metadata embedded in an image
type Manifest struct {
	// Name is the display name
	Name string
	// Icon is an icon reference
	Icon string
	// API is the API version the image was built against
	API APIVersion
	// Target is the hardware target; zero matches any target
	Target uint16
	// StackSize is the stack size hint
	StackSize int
	// Flags are the capability flags
	Flags Flags
	// Plugin marks a library image that cannot run on its own
	Plugin bool
	// Entry is the entry symbol
	Entry string
	// Imports are the firmware symbols the image binds to
	Imports []string
}

// ImageMeta is the display metadata used by the menu catalog
type ImageMeta struct {
	Name string
	Icon string
}

// Image is a dynamically loaded image being prepared for launch. Release
// frees the image and any Thread it created.
type Image interface {
	// Preload reads and validates the image and classifies the outcome
	Preload() Classification
	// Map relocates the image and binds its imports
	Map() Classification
	// Manifest returns the manifest read by Preload
	Manifest() Manifest
	// IsRunnable reports whether the image is an application
	IsRunnable() bool
	// NewThread creates the execution context for a mapped image
	NewThread(args string) Thread
	// Release frees the image
	Release()
}

// ImageLoader opens dynamically loaded images on storage
type ImageLoader interface {
	// Open allocates an image handle for path
	Open(path string) Image
	// LoadMeta reads only the display metadata of the image at path
	LoadMeta(path string) (ImageMeta, error)
	// APIVersion returns the firmware API version images are checked against
	APIVersion() APIVersion
}
