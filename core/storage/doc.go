// Package storage provides the object storage client used for audit archives.
//
// CSV import uploads are archived to a bucket before any rows are applied, so
// every ledger import event can be traced back to the exact file that produced
// it. The Client interface wraps the MinIO SDK; the mocks subpackage provides
// a testify mock for services that archive objects.
package storage
