// Package warmer pre-renders thumbnails for every supported image below a
// source directory, so that page renders find their artifacts cached.
//
// [Warmer.Run] walks the tree once with a bounded pool of workers.
// [Warmer.RunEvery] repeats the walk on an interval, reloading the
// configuration before each pass. [Warmer.Watch] renders files as they are
// created or rewritten. Directories named like artifact geometries
// ("100x75") and hidden directories are never descended into.
package warmer
