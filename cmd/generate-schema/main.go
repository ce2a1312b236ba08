package main

import (
	"flag"
	"os"

	"cloud.google.com/go/bigquery"
	"github.com/m-lab/go/cloud/bqx"
	"github.com/m-lab/go/rtx"

	"github.com/ams-OSRAM/tmf8806-zmq-data-logger/pkg/tmf8806/model"
)

var sessionSchema string

func init() {
	flag.StringVar(&sessionSchema, "tmf8806", "/var/spool/datatypes/tmf8806.json", "filename to write the session archive schema")
}

func main() {
	flag.Parse()
	// Generate and save the schema for autoloading.
	sch, err := bigquery.InferSchema(model.SessionArchive{})
	rtx.Must(err, "failed to generate tmf8806 schema")
	sch = bqx.RemoveRequired(sch)
	b, err := sch.ToJSONFields()
	rtx.Must(err, "failed to marshal tmf8806 schema")
	err = os.WriteFile(sessionSchema, b, 0o644)
	rtx.Must(err, "failed to write tmf8806 schema")
}
