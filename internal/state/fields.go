package state

// Fields of a project snapshot.
const (
	Command        Field = "command"
	Text           Field = "text"
	TextSource     Field = "textSource"
	Dirty          Field = "dirty"
	FilePath       Field = "filePath"
	FileName       Field = "fileName"
	RecentCommands Field = "recentCommands"
	RecentFiles    Field = "recentFiles"
	BackStack      Field = "backStack"
	ForwardStack   Field = "forwardStack"
	BackEnabled    Field = "backEnabled"
	ForwardEnabled Field = "forwardEnabled"
	RunVersion     Field = "runVersion"
	ResultVersion  Field = "resultVersion"
	LoadedVersion  Field = "loadedVersion"
	LastRunCrashed Field = "lastRunCrashed"
	Error          Field = "error"
	SitePath       Field = "sitePath"
	ProjectName    Field = "projectName"
	PageTitle      Field = "pageTitle"
	LastScroll     Field = "lastScroll"
)
