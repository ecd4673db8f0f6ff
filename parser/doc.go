/*
Package parser reads FlatBuffers schema text into a schema.Registry.

The accepted language is a subset of the FlatBuffers IDL:

	include "other.fbs";            // recorded, not loaded
	namespace example.game;
	attribute "priority";

	enum Color : byte { Red = 0, Green, Blue = 2 }
	union Equipment { Weapon, Shield }

	struct Vec3 (force_align: 16) { x : float; y : float; z : float; }

	table Monster {
	  pos : Vec3;
	  hp : short = 100;
	  name : string (required);
	  color : Color = Blue;
	  inventory : [ubyte];
	  equipped : Equipment;
	}

	root_type Monster;

Parsing only populates the registry; call Compile on the result before
reading or writing buffers.
*/
package parser
