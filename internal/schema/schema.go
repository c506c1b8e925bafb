// Package schema provides the types shared by all other packages: the error
// taxonomy of path resolution and the metadata reported for contained paths.
// It has no dependencies on the other packages of the module.
package schema
