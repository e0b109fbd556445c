// Package thumbnail generates and caches resized thumbnails on demand.
//
// A render resolves the source and destination directories, checks whether
// an artifact for (directory, width, height, filename) already exists, and
// otherwise decodes the source, draws it onto a canvas of the target size
// and writes the encoded result to <destination>/<width>x<height>/<filename>.
// Anything that prevents a thumbnail from being produced (missing source,
// unsupported format, undecodable data, failed write) is answered with the
// default image instead of an error.
package thumbnail
