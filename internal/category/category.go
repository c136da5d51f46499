// Package category classifies commands into coarse risk buckets.
//
// The category set is fixed at compile time. Each ID maps to exactly one
// Category through a total function, so classification can never fail with
// an unknown-category error.
package category

// RiskLevel is the default risk posture of a category.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Category describes a classification bucket.
type Category struct {
	Name                 string    `json:"name"`
	RiskLevel            RiskLevel `json:"risk_level"`
	RequiresConfirmation bool      `json:"requires_confirmation"`
	AllowedInSandbox     bool      `json:"allowed_in_sandbox"`
	Description          string    `json:"description"`
}

// ID enumerates the built-in categories.
type ID int

const (
	FileSystemRead ID = iota
	FileSystemWrite
	SystemAdmin
	Network
	Development
	PackageManagement

	numCategories
)

var categories = [numCategories]Category{
	FileSystemRead: {
		Name:                 "file-system-read",
		RiskLevel:            RiskLow,
		RequiresConfirmation: false,
		AllowedInSandbox:     true,
		Description:          "Read-only file system operations",
	},
	FileSystemWrite: {
		Name:                 "file-system-write",
		RiskLevel:            RiskMedium,
		RequiresConfirmation: true,
		AllowedInSandbox:     true,
		Description:          "File system modifications",
	},
	SystemAdmin: {
		Name:                 "system-admin",
		RiskLevel:            RiskCritical,
		RequiresConfirmation: true,
		AllowedInSandbox:     false,
		Description:          "System administration commands",
	},
	Network: {
		Name:                 "network",
		RiskLevel:            RiskMedium,
		RequiresConfirmation: true,
		AllowedInSandbox:     true,
		Description:          "Network operations",
	},
	Development: {
		Name:                 "development",
		RiskLevel:            RiskLow,
		RequiresConfirmation: false,
		AllowedInSandbox:     true,
		Description:          "Development tools and utilities",
	},
	PackageManagement: {
		Name:                 "package-management",
		RiskLevel:            RiskMedium,
		RequiresConfirmation: true,
		AllowedInSandbox:     true,
		Description:          "Package installation and management",
	},
}

// Category returns the descriptor for id. An out-of-range id is a
// programming error and panics.
func (id ID) Category() Category {
	if id < 0 || id >= numCategories {
		panic("category: invalid id")
	}
	return categories[id]
}

func (id ID) String() string { return id.Category().Name }

// All returns every built-in category in declaration order.
func All() []Category {
	out := make([]Category, 0, numCategories)
	for _, c := range categories {
		out = append(out, c)
	}
	return out
}
