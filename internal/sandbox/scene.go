package sandbox

import (
	"regexp"
	"strings"
)

// DefaultScene is used when no class definition can be found.
const DefaultScene = "Main"

var (
	sceneClass = regexp.MustCompile(`class\s+(\w+)\s*\([^)]*Scene[^)]*\)`)
	anyClass   = regexp.MustCompile(`class\s+(\w+)\s*\(`)
)

// SceneName picks the class manim should render: the first class deriving
// from a *Scene type, else the first class, else DefaultScene. matched is
// false when the default was used.
func SceneName(code string) (name string, matched bool) {
	if m := sceneClass.FindStringSubmatch(code); m != nil {
		return m[1], true
	}
	if m := anyClass.FindStringSubmatch(code); m != nil {
		return m[1], true
	}
	return DefaultScene, false
}

// looksLikeScene is the minimal check that code defines a scene at all.
func looksLikeScene(code string) bool {
	return strings.Contains(code, "class") && strings.Contains(code, "Scene")
}
