// Package nexrad lists and downloads NEXRAD Level II volume scans from the
// public cloud archives.
package nexrad
