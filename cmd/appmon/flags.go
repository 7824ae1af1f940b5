package main

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

// RunFlags holds flags for the run command. Non-zero values override
// the config file.
type RunFlags struct {
	Mode string
	Echo bool
}

// HourlyFlags holds flags for the hourly replay command.
type HourlyFlags struct {
	LogFile string
	Out     string
	State   string
	Append  bool
	Quiet   bool
}

// ListFlags holds flags for the list command.
type ListFlags struct {
	IncludeSystem bool
}
