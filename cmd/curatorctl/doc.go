// Curatorctl runs recycle bin, path and date repair operations directly
// against a media library, using the same configuration as the server.
//
// Usage:
//
//	curatorctl trash /media/album/a.jpg
//	curatorctl restore /media/album/a.jpg
//	curatorctl empty --disable --force
//	curatorctl favorite /media/album/a.jpg
//	curatorctl fix-dates --dir /media/album
//	curatorctl config init
//
// Do not run it against a library while the server is writing to it.
package main
