package model

// Column names as they appear in the vendor exports and derived views.
const (
	ColDEV            = "DEV"
	ColFN             = "FN"
	ColSN             = "SN"
	ColPN             = "PN"
	ColDEV2           = "DEV_2"
	ColFaultID        = "FaultID"
	ColNameAlarm      = "NAME_ALARM"
	ColGestor         = "Gestor"
	ColHoraPeru       = "HoraPeru"
	ColHoraProceso    = "HoraProceso"
	ColHour           = "Hour"
	ColSerialNo       = "SerialNo"
	ColTipoFinal      = "TipoFinal"
	ColStrName        = "strName"
	ColStrAckUserName = "strAckUserName"
	ColClientePuerto  = "Cliente_puerto"
)

// Client snapshot columns. The snapshot is a spreadsheet pivot export, so its
// key column may still carry the pivot's row-label header.
const (
	ClientColRowLabel = "Etiquetas de fila"
	ClientColTotal    = "Total general"
)

// Gestor tags, one per alarm source.
const (
	GestorHuawei = "Huawei"
	GestorZTE    = "ZTE"
)

// KeyColumns are the identifier columns that make up DEV_2, in order.
var KeyColumns = []string{ColDEV, ColFN, ColSN, ColPN}
