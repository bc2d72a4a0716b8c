package constants

const (
	AppName = "esmrt"

	EnvLogLevel  = "ESMRT_LOG_LEVEL"
	EnvDebug     = "ESMRT_DEBUG"
	EnvFastPath  = "ESMRT_DISABLE_FASTRESOLVE"
	ManifestName = AppName + ".module.toml"
)
