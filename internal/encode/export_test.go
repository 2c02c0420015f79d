package encode

// Export internal identifiers for testing.
// This file is only compiled during tests (suffix _test.go).

// Runner exports runner interface for testing.
type Runner = runner

// FileSystem exports fileSystem interface for testing.
type FileSystem = fileSystem

// ConcatList exports concatList for testing.
var ConcatList = concatList

// ListFileName exports listFileName for testing.
const ListFileName = listFileName
