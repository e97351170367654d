/*
Package blocksync implements the block synchronization mechanism used to catch
up with a heavier chain after a long absence.

When the processor receives a block that belongs to a different, heavier chain
it publishes a sync request. The Reactor consumes these requests and, when the
node is far enough behind its last finalized block, hands the received block to
the Synchronizer.

A synchronization run proceeds as follows:

 1. Select the best peer among the connected ones: the peers with the highest
    prevoted height and then the highest height are grouped by tip, and a peer
    is picked at random from the largest group.
 2. Request the tip of that peer and check it is valid and on a heavier chain.
 3. Probe backwards, a batch of round heights at a time, for the highest
    block both chains share.
 4. Revert the local chain to that common block, keeping a backup of every
    reverted block in the temp table.
 5. Fetch the blocks from the common block up to the received block, or as
    many as the peer provides, and process them one by one like any received
    block, stopping at the first that fails.

A run ends in one of four outcomes. Completed means the received block is the
new tip. PenalizeAndRestart means the peer misbehaved: it is penalized and the
received block is processed again. Restart means the run made no harmful
progress and the received block is processed again without penalty. Any other
error is fatal and returned to the caller.

At most one run is active at any time.
*/
package blocksync
