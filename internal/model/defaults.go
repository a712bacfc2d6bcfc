package model

import "time"

// Shared defaults used by the server and the report command.
const (
	DefaultRefreshInterval = 15 * time.Minute
	DefaultFetchTimeout    = 30 * time.Second
	DefaultTopOLTLimit     = 10
	DefaultClientsPath     = "clientes_activos.parquet"
	DefaultHuaweiURL       = "https://docs.google.com/spreadsheets/d/e/2PACX-1vTign5FwsuyQIprayFCmuNAmDexWqKZUYM7tN5i0a5rAU_0UprfZWQUSxX4bJ2m5cIP7YzMiFou75CW/pub?gid=0&single=true&output=csv"
	DefaultZTEURL          = "https://docs.google.com/spreadsheets/d/e/2PACX-1vRY5_ja1U1Ny4KWCefOi6zV1WFDUqQdo8_MyDlGLSSIUYnW3LI3fN7qzT7gKs2xOfu4IrLt7OcVnNzm/pub?gid=0&single=true&output=csv"
)
