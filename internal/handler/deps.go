package handler

import (
	"collabhub/internal/app/activity"
	"collabhub/internal/app/collab"
	"collabhub/internal/configs"
)

// AppDeps bundles the shared dependencies handed to every HTTP handler.
type AppDeps struct {
	Directory  *collab.Directory
	Activities *activity.Logger
	Config     *configs.AppConfig
}
