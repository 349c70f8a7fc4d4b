package tui

// Scene represents different screens in the explorer
type Scene int

const (
	SceneHome Scene = iota
	SceneInvest
	SceneDistribution
	SceneOptimize
	SceneHelp
)

func (s Scene) String() string {
	switch s {
	case SceneHome:
		return "Home"
	case SceneInvest:
		return "Invest"
	case SceneDistribution:
		return "Distribution"
	case SceneOptimize:
		return "Optimize"
	case SceneHelp:
		return "Help"
	default:
		return "Unknown"
	}
}

// NavigateMsg switches to a different scene
type NavigateMsg struct {
	Scene Scene
}
