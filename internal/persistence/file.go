// Package persistence writes session archives to disk.
package persistence

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// DataFile is a gzip-compressed JSON file under a date-partitioned
// directory: <datadir>/<datatype>/YYYY/MM/DD/<datatype>-<kind>-<ts>.<id>.json.gz
type DataFile struct {
	// Path is the path of the file on disk.
	Path string

	writer *gzip.Writer
	fp     *os.File
}

// New creates a DataFile for an archive of the given datatype and kind. The
// file must not exist yet.
func New(datadir, datatype, kind, id string) (*DataFile, error) {
	timestamp := time.Now().UTC()
	dir := filepath.Join(datadir, datatype, timestamp.Format("2006/01/02"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	name := datatype + "-" + kind + "-" +
		timestamp.Format("20060102T150405.000000000Z") + "." + id + ".json.gz"
	path := filepath.Join(dir, name)
	fp, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, err
	}
	writer, err := gzip.NewWriterLevel(fp, gzip.BestSpeed)
	if err != nil {
		fp.Close()
		return nil, err
	}
	return &DataFile{
		Path:   path,
		writer: writer,
		fp:     fp,
	}, nil
}

// Write writes a JSON representation of v to this file.
func (df *DataFile) Write(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = df.writer.Write(data)
	return err
}

// Close closes the gzip writer and the file.
func (df *DataFile) Close() error {
	return errors.Join(df.writer.Close(), df.fp.Close())
}

// WriteDataFile creates a DataFile, writes v to it and closes it. It returns
// the path of the written file.
func WriteDataFile(datadir, datatype, kind, id string, v interface{}) (string, error) {
	df, err := New(datadir, datatype, kind, id)
	if err != nil {
		return "", err
	}
	if err := df.Write(v); err != nil {
		df.Close()
		return df.Path, err
	}
	return df.Path, df.Close()
}
