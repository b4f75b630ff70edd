// Package trashpath translates between original media paths, their copies
// in the recycle bin staging tree, and the prefixed keys that mark trashed
// rows in the metadata index.
//
// All functions are pure string manipulation and perform no I/O:
//
//	tr := trashpath.New("/data/recycle", "")
//	tr.ToRecycleBinPath("/photos/a.jpg") // "/data/recycle/photos/a.jpg"
//	tr.IndexKey("/photos/a.jpg")         // "recycle_bin/photos/a.jpg"
package trashpath
