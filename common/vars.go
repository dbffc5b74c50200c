package common

// IsTest can be overridden to avoid spawning long-running listeners and
// other infinite loops during tests
var IsTest bool
