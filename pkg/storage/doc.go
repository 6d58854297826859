/*
Package storage provides a BoltDB-backed config record store.

It is the file-backed alternative to the Kubernetes ConfigMap store and is
selected with registry.backend: bolt. Records are addressed by
types.RecordRef; each "namespace/name" pair is a nested bucket under
"records" and each key of the record is a value in that bucket.

# Versioning

Every successful Write bumps the nested bucket's sequence number. Read
returns that number as the record version, and Write rejects a non-empty
expected version that no longer matches with an errdefs Conflict error, the
same contract the ConfigMap store implements with resourceVersion.

	store, err := storage.NewBoltStore("/var/lib/rackmon")
	if err != nil {
		return err
	}
	defer store.Close()

	rec, _ := store.Read(ctx, ref)
	err = store.Write(ctx, ref, value, rec.Version)
*/
package storage
