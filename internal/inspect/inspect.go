package inspect

import (
	"errors"
	"fmt"

	"github.com/shogo82148/androidbinary/apk"
)

// errEmptyPackageName is returned when an artifact manifest has no package name.
var errEmptyPackageName = errors.New("artifact has empty package name")

// Inspector extracts the package identifier from a release artifact.
type Inspector interface {
	PackageName(path string) (string, error)
}

// APKInspector reads the binary Android manifest inside an APK.
type APKInspector struct{}

// NewAPKInspector creates an inspector for APK artifacts.
func NewAPKInspector() *APKInspector {
	return &APKInspector{}
}

// PackageName opens the artifact and returns its manifest package identifier.
func (*APKInspector) PackageName(path string) (string, error) {
	pkg, err := apk.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}

	defer func() {
		_ = pkg.Close()
	}()

	name := pkg.PackageName()
	if name == "" {
		return "", errEmptyPackageName
	}

	return name, nil
}
