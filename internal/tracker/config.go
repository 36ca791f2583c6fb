package tracker

// Config controls runtime settings for the tracker.
type Config struct {
	// StoragePath is the directory holding the database file.
	StoragePath string `json:"storage_path,omitempty"`

	// DBFile is the database file name inside StoragePath (default a11yscan.db).
	DBFile string `json:"db_file,omitempty"`
}
