package version

// Version wird beim Release per -ldflags gesetzt
var Version string = "0.0.0"
